// Package mysensors classifies the MySensors sensor-network taxonomy. A node presents children, each declaring a
// SensorType, and exchanges readings and commands tagged with a ValueType. The tables in this package assign every
// (sensor type, value type) pairing to the entity platform that represents it.
//
// The tables and the indexes derived from them are built when the package is initialized and must not be modified.
package mysensors
