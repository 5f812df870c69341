// Package service provides the operations the CLI performs against the
// sales backend.
//
// This package contains:
//
//   - ResourceService: generic list/get/create/update/delete over the
//     resource registry, with local fallbacks for resources the backend
//     does not serve yet
//   - AuthService: login, identity refresh, logout and health check
//
// Services hold no state of their own beyond the injected request engine
// and session store, and are safe for concurrent use.
package service
