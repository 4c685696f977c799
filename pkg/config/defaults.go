package config

// ApplyDefaults fills in unset optional fields across the whole
// manifest; callers run this between loading and Validate.
func (m *Manifest) ApplyDefaults() {
	for i := range m.Networks {
		m.Networks[i].ApplyDefaults()
	}
	for i := range m.Contracts {
		for j := range m.Contracts[i].Events {
			m.Contracts[i].Events[j].Timestamp.ApplyDefaults()
			m.Contracts[i].Events[j].ApplyDefaults()
		}
	}
	m.Logging.ApplyDefaults()
	if m.Metrics != nil {
		m.Metrics.ApplyDefaults()
	}
	if m.API != nil {
		m.API.ApplyDefaults()
	}
}
