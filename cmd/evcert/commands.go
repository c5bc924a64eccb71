package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/timzifer/evcert/config"
	"github.com/timzifer/evcert/engine"
	"github.com/timzifer/evcert/protection"
)

func evaluateFile(w io.Writer, eng *engine.Engine, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read form: %w", err)
	}
	var form engine.Form
	if err := yaml.Unmarshal(raw, &form); err != nil {
		return fmt.Errorf("parse form %s: %w", path, err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(eng.Evaluate(form))
}

func printMaxZsTable(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tCURVE\tRATING\tMAX ZS\tSOURCE")
	for _, row := range protection.Entries() {
		fmt.Fprintf(tw, "%s\t%s\t%dA\t%s\t%s\n",
			row.Device.Type, row.Device.Curve, row.Device.Rating,
			strconv.FormatFloat(row.Entry.MaxZs, 'f', 2, 64), row.Entry.Source)
	}
	tw.Flush()
}

func executeConfigCheck(w io.Writer, cfg *config.Config) int {
	eng, err := engine.New(cfg)
	if err != nil {
		fmt.Fprintf(w, "configuration invalid: %v\n", err)
		return 1
	}

	fmt.Fprintf(w, "Configuration %q\n", cfg.Source)
	fmt.Fprintf(w, "  Chargers: %d (%d extra catalogues)\n", eng.Chargers().Len(), len(cfg.Chargers.Catalogues))
	fmt.Fprintf(w, "  DNO single phase: notify %.2f kW, apply %.2f kW\n",
		cfg.Rules.DNO.SinglePhase.NotifyKW, cfg.Rules.DNO.SinglePhase.ApplyKW)
	fmt.Fprintf(w, "  DNO three phase: notify %.2f kW, apply %.2f kW\n",
		cfg.Rules.DNO.ThreePhase.NotifyKW, cfg.Rules.DNO.ThreePhase.ApplyKW)
	limits := eng.Validator().Limits()
	fmt.Fprintf(w, "  Limits: insulation >= %g MOhm, RCD <= %g ms, RCD 5x <= %g ms\n",
		limits.InsulationMinMOhm, limits.RCDTripMaxMs, limits.RCDTripMax5xMs)
	if len(cfg.Rules.Warnings) == 0 {
		fmt.Fprintln(w, "  Warning rules: <none>")
	} else {
		fmt.Fprintln(w, "  Warning rules:")
		for _, rule := range cfg.Rules.Warnings {
			fmt.Fprintf(w, "    - %s: %s\n", rule.Field, rule.Expression)
		}
	}
	fmt.Fprintf(w, "  Temperature correction: %t\n", eng.TemperatureCorrection())
	fmt.Fprintf(w, "  HTTP: %t, MQTT: %t, hot reload: %t\n", cfg.Server.Enabled, cfg.MQTT.Enabled, cfg.HotReload)
	fmt.Fprintln(w, "Configuration check completed successfully.")
	return 0
}
