package logging

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/grafana/loki-client-go/loki"
	"github.com/prometheus/common/model"
	"github.com/rs/zerolog"

	"github.com/timzifer/evcert/config"
)

// lokiClient is the part of *loki.Client the sink uses.
type lokiClient interface {
	Handle(labels model.LabelSet, ts time.Time, line string) error
}

// lokiSink ships JSON log lines to Loki. Each line goes to the stream
// labelled with its level and component on top of the static labels.
type lokiSink struct {
	client lokiClient
	base   model.LabelSet
}

func newLokiSink(cfg config.LokiConfig) (*lokiSink, func(), error) {
	if cfg.URL == "" {
		return nil, nil, fmt.Errorf("loki url is required")
	}
	clientCfg, err := loki.NewDefaultConfig(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("prepare loki config: %w", err)
	}
	client, err := loki.New(clientCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create loki client: %w", err)
	}
	return newSink(client, cfg.Labels), client.Stop, nil
}

func newSink(client lokiClient, labels map[string]string) *lokiSink {
	base := model.LabelSet{"app": "evcert"}
	for k, v := range labels {
		base[model.LabelName(k)] = model.LabelValue(v)
	}
	return &lokiSink{client: client, base: base}
}

func (s *lokiSink) Write(p []byte) (int, error) {
	return s.WriteLevel(zerolog.NoLevel, p)
}

// WriteLevel implements zerolog.LevelWriter.
func (s *lokiSink) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	line := strings.TrimSpace(string(p))
	if line == "" {
		return len(p), nil
	}
	labels := s.base.Clone()
	if level != zerolog.NoLevel {
		labels["level"] = model.LabelValue(level.String())
	}
	var fields struct {
		Component string `json:"component"`
	}
	if json.Unmarshal([]byte(line), &fields) == nil && fields.Component != "" {
		labels["component"] = model.LabelValue(fields.Component)
	}
	return len(p), s.client.Handle(labels, time.Now(), line)
}
