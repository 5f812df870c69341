// Package confloader loads layered configuration with koanf.
//
// Priority (highest to lowest):
//
//  1. Command-line flags (LoadMap)
//  2. Process environment (SALESDESK_SECTION_KEY, plus legacy aliases)
//  3. A .env file in the working directory
//  4. The YAML configuration file
//  5. Defaults held by the target struct
//
// Environment names map to keys by splitting on the first underscore after
// the prefix, so SALESDESK_API_DEV_PROXY_URL becomes api.dev_proxy_url.
//
// Watcher reports writes to watched files so long-running processes can
// reload.
package confloader
