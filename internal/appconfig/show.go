package appconfig

import (
	"fmt"
	"io"
)

// ShowConfig prints the current configuration summary.
func ShowConfig(out io.Writer, file string, cfg *Config) {
	if file == "" {
		fmt.Fprintln(out, "No config file loaded (using defaults).")
	} else {
		fmt.Fprintf(out, "Config file: %s\n\n", file)
	}

	if cfg == nil {
		cfg = &Config{}
	}

	fmt.Fprintln(out, "Current configuration:")
	fmt.Fprintf(out, "  Debug:           %v\n", cfg.Debug)
	fmt.Fprintf(out, "  Default Mode:    %s\n", cfg.Mode())
	fmt.Fprintf(out, "  Request Timeout: %s\n", cfg.RequestTimeout())
	fmt.Fprintf(out, "  Chunk Delay:     %s\n", cfg.ChunkDelay())
	fmt.Fprintf(out, "  Sample Interval: %s\n", cfg.SampleInterval())
	fmt.Fprintf(out, "  Parallelism:     %d\n", cfg.Parallelism())
	fmt.Fprintf(out, "  Log File:        %s\n", cfg.LogFilePath())
	if cfg.ExportPath != "" {
		fmt.Fprintf(out, "  Export Path:     %s\n", cfg.ExportPath)
	}
	fmt.Fprintf(out, "  Hosts:           %d\n", len(cfg.Hosts))
	for _, h := range cfg.Hosts {
		fmt.Fprintf(out, "    - %s (%s) %s models=%v\n", h.Name, h.Type, h.URL, h.Models)
	}
}
