package config

// ConfigDiff describes what changed between two configs.
type ConfigDiff struct {
	ExecutionChanged bool
	NewExecution     string

	LogLevelChanged bool
	NewLogLevel     string

	// Non-reloadable fields that changed (log warnings only)
	NonReloadable []string
}

// HasChanges reports whether any reloadable field changed.
func (d *ConfigDiff) HasChanges() bool {
	return d.ExecutionChanged || d.LogLevelChanged
}

// Diff compares two configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	var d ConfigDiff

	if old.Execution != new.Execution {
		d.ExecutionChanged = true
		d.NewExecution = new.Execution
	}

	if old.Log.Level != new.Log.Level {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Log.Level
	}

	// Non-reloadable warnings
	if old.Backend != new.Backend {
		d.NonReloadable = append(d.NonReloadable, "backend")
	}
	if old.Live != new.Live {
		d.NonReloadable = append(d.NonReloadable, "live")
	}
	if old.Roster != new.Roster {
		d.NonReloadable = append(d.NonReloadable, "roster")
	}
	if old.Telegram.Token != new.Telegram.Token {
		d.NonReloadable = append(d.NonReloadable, "telegram.token")
	}
	if old.Telegram.Remind != new.Telegram.Remind {
		d.NonReloadable = append(d.NonReloadable, "telegram.remind")
	}
	if old.Web.Port != new.Web.Port {
		d.NonReloadable = append(d.NonReloadable, "web.port")
	}
	if old.NATS != new.NATS {
		d.NonReloadable = append(d.NonReloadable, "nats")
	}
	if old.Store.Path != new.Store.Path {
		d.NonReloadable = append(d.NonReloadable, "store.path")
	}

	return d
}
