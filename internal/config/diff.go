package config

import "reflect"

// ChangedSections lists the top-level sections that differ between two
// configs, in file order. Only names are reported so secrets never reach
// the log.
func ChangedSections(oldCfg, newCfg *Config) []string {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var out []string
	check := func(name string, a, b any) {
		if !reflect.DeepEqual(a, b) {
			out = append(out, name)
		}
	}
	check("backend", oldCfg.Backend, newCfg.Backend)
	check("logging", oldCfg.Logging, newCfg.Logging)
	check("poller", oldCfg.Poller, newCfg.Poller)
	check("display", oldCfg.Display, newCfg.Display)
	check("storage", oldCfg.Storage, newCfg.Storage)
	check("alerts", oldCfg.Alerts, newCfg.Alerts)
	check("debug", oldCfg.Debug, newCfg.Debug)
	return out
}
