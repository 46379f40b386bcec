// Package pathutils expands user home shortcuts in configured file locations.
package pathutils
