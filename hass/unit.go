package hass

// UnitOfTemperature is a temperature unit as rendered by the frontend.
type UnitOfTemperature string

const (
	UnitCelsius    UnitOfTemperature = "°C"
	UnitFahrenheit UnitOfTemperature = "°F"
	UnitKelvin     UnitOfTemperature = "K"
)
