// Package flags defines the flag names shared by the command-line tools together
// with choice usage formatting and yes/no toggles.
package flags
