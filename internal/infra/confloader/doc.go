// Package confloader loads layered configuration with koanf and watches the
// config file for changes.
//
// Priority (highest to lowest):
//
//  1. Environment variables (MOECKPT_SECTION_KEY)
//  2. The YAML config file
//  3. Values already present in the target struct (defaults)
package confloader
