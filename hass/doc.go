// Package hass contains the small set of hub-wide enumerations (platforms, units, availability) shared by the
// integrations in this module.
package hass
