package registry

import (
	"sort"

	"github.com/srg/blebridge/internal/bledb"
)

// Model is a compiled device model: the services and characteristics the bridge
// expects a peripheral of that kind to expose.
type Model struct {
	Name        string
	Description string
	Services    []*ServiceSpec
}

const (
	uartService = "6e400001-b5a3-f393-e0a9-e50e24dcca9e"
	uartRX      = "6e400002-b5a3-f393-e0a9-e50e24dcca9e"
	uartTX      = "6e400003-b5a3-f393-e0a9-e50e24dcca9e"
)

func batteryService() *ServiceSpec {
	return service("180f", "BatteryService",
		characteristic("2a19", "BatteryLevel", FormatUint8, false),
	)
}

var catalog = map[string]*Model{
	"battery": {
		Name:        "battery",
		Description: "Battery level only",
		Services:    []*ServiceSpec{batteryService()},
	},
	"heart_rate": {
		Name:        "heart_rate",
		Description: "Heart rate monitor with battery",
		Services: []*ServiceSpec{
			service("180d", "HeartRateSensor",
				characteristic("2a37", "HeartRateMeasurement", FormatHeartRate, false),
				characteristic("2a38", "BodySensorLocation", FormatUint8, false),
			),
			batteryService(),
		},
	},
	"environmental": {
		Name:        "environmental",
		Description: "Temperature and humidity sensor with battery",
		Services: []*ServiceSpec{
			service("181a", "EnvironmentalSensor",
				characteristic("2a6e", "CurrentTemperature", FormatSint16LECenti, false),
				characteristic("2a6f", "CurrentRelativeHumidity", FormatUint16LECenti, false),
			),
			batteryService(),
		},
	},
	"alert_tag": {
		Name:        "alert_tag",
		Description: "Key finder tag with immediate alert",
		Services: []*ServiceSpec{
			service("1802", "ImmediateAlert",
				characteristic("2a06", "AlertLevel", FormatUint8, true),
			),
			batteryService(),
		},
	},
	"uart": {
		Name:        "uart",
		Description: "Nordic UART serial bridge",
		Services: []*ServiceSpec{
			service(uartService, "SerialPort",
				characteristic(uartRX, "SerialRX", FormatUTF8, false),
				characteristic(uartTX, "SerialTX", FormatUTF8, false),
			),
		},
	},
}

// LookupModel returns the compiled model with the given name.
func LookupModel(name string) (*Model, bool) {
	m, ok := catalog[name]
	return m, ok
}

// Models returns every compiled model sorted by name.
func Models() []*Model {
	models := make([]*Model, 0, len(catalog))
	for _, m := range catalog {
		models = append(models, m)
	}
	sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })
	return models
}

func service(uuid, class string, chars ...*CharacteristicSpec) *ServiceSpec {
	u := bledb.NormalizeUUID(uuid)
	s := &ServiceSpec{
		UUID:            u,
		DisplayClass:    class,
		Name:            bledb.LookupService(u),
		Characteristics: make(map[string]*CharacteristicSpec, len(chars)),
	}
	for _, c := range chars {
		s.Characteristics[c.UUID] = c
	}
	return s
}

func characteristic(uuid, class string, format Format, identify bool) *CharacteristicSpec {
	return &CharacteristicSpec{
		UUID:         bledb.NormalizeUUID(uuid),
		DisplayClass: class,
		Format:       format,
		Identify:     identify,
	}
}
