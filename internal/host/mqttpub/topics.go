package mqttpub

import "strings"

// Topics builds and parses the topic tree under a prefix:
//
//	<prefix>/$state                              online/offline (retained, LWT)
//	<prefix>/<uuid>/$name                        accessory display name
//	<prefix>/<uuid>/$services                    comma separated service classes
//	<prefix>/<uuid>/<service>/<characteristic>   characteristic value
//	<prefix>/<uuid>/<service>/<characteristic>/set
//	<prefix>/<uuid>/identify
type Topics struct {
	Prefix string
}

func (t Topics) State() string {
	return t.Prefix + "/$state"
}

func (t Topics) Name(uuid string) string {
	return t.Prefix + "/" + uuid + "/$name"
}

func (t Topics) Services(uuid string) string {
	return t.Prefix + "/" + uuid + "/$services"
}

func (t Topics) Value(uuid, service, characteristic string) string {
	return t.Prefix + "/" + uuid + "/" + service + "/" + characteristic
}

// SetFilter matches every characteristic write command.
func (t Topics) SetFilter() string {
	return t.Prefix + "/+/+/+/set"
}

// IdentifyFilter matches every identify command.
func (t Topics) IdentifyFilter() string {
	return t.Prefix + "/+/identify"
}

// ParseSet extracts the target of a write command topic.
func (t Topics) ParseSet(topic string) (uuid, service, characteristic string, ok bool) {
	parts, ok := t.split(topic)
	if !ok || len(parts) != 4 || parts[3] != "set" {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

// ParseIdentify extracts the target of an identify command topic.
func (t Topics) ParseIdentify(topic string) (uuid string, ok bool) {
	parts, ok := t.split(topic)
	if !ok || len(parts) != 2 || parts[1] != "identify" {
		return "", false
	}
	return parts[0], true
}

func (t Topics) split(topic string) ([]string, bool) {
	rest, ok := strings.CutPrefix(topic, t.Prefix+"/")
	if !ok {
		return nil, false
	}
	parts := strings.Split(rest, "/")
	for _, p := range parts {
		if p == "" {
			return nil, false
		}
	}
	return parts, true
}
