package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

const schemaPath = "evcert/schema.cue"

const schemaContent = `package schema

#Thresholds: {
    notify_kw: number & >=0
    apply_kw:  number & >=notify_kw
}

#WarningRule: {
    field:      "zs" | "insulation_resistance" | "rcd_trip_time" | "rcd_trip_time_5x"
    expression: string & !=""
    message?:   string
}

#Level: "trace" | "debug" | "info" | "warn" | "error" | "fatal" | "panic" | "disabled"

#Config: {
    name: string
    logging: {
        level:      #Level
        format:     "" | "json" | "text"
        components: null | {[string]: #Level}
        loki: {
            enabled: bool
            url:     string
            labels:  null | {[string]: string}
            if enabled {
                url: =~"^https?://"
            }
        }
    }
    telemetry: {
        enabled:  bool
        provider: "" | "prometheus" | "none"
    }
    server: {
        enabled: bool
        listen:  string & !=""
    }
    mqtt: {
        enabled:         bool
        broker:          string
        client_id:       string & !=""
        username:        string
        password:        string
        topic_prefix:    string & =~"^[^#+]+$"
        qos:             0 | 1 | 2
        keep_alive:      string
        connect_timeout: string
        if enabled {
            broker: =~"^(tcp|ssl|ws|wss|mqtt|mqtts)://"
        }
    }
    rules: {
        dno: {
            single_phase: #Thresholds
            three_phase:  #Thresholds
        }
        limits: {
            insulation_min_mohm: number & >0
            rcd_trip_max_ms:     number & >0
            rcd_trip_max_5x_ms:  number & >0 & <=rcd_trip_max_ms
        }
        warnings:               null | [...#WarningRule]
        temperature_correction: null | bool
    }
    chargers: {
        catalogues: null | [...string & !=""]
    }
    hot_reload: bool
}
`

// Validate checks the configuration against the CUE schema and any
// registered overlays.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config must not be nil")
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config for validation: %w", err)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource(), cue.Filename(schemaPath))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %s", cueerrors.Details(err, nil))
	}
	value := ctx.CompileBytes(data, cue.Filename("config.json"))
	if err := value.Err(); err != nil {
		return fmt.Errorf("load config for validation: %w", err)
	}
	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid configuration: %s", strings.TrimSpace(cueerrors.Details(err, nil)))
	}
	return nil
}

func schemaSource() string {
	overlays := ResolveOverlays()
	if len(overlays) == 0 {
		return schemaContent
	}
	var b strings.Builder
	b.WriteString(schemaContent)
	for _, src := range overlays {
		b.WriteString("\n")
		b.WriteString(src)
		b.WriteString("\n")
	}
	return b.String()
}
