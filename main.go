// Program matrixboard drives a small pixel matrix (or a terminal standing in
// for one) with a rotating set of screens: a clock, the current weather and
// the next Formula 1 race.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"matrixboard/canvas"
	"matrixboard/config"
	"matrixboard/render"
	"matrixboard/schedule"
	"matrixboard/screen"
	"matrixboard/sink"
	"matrixboard/source"
)

const (
	defaultConfigPath = "data/config.yaml"
	envConfigPath     = "MATRIXBOARD_CONFIG"

	raceSourceName    = "race"
	weatherSourceName = "weather"
)

func isStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// loadConfig tries $MATRIXBOARD_CONFIG, then the default path, and falls back
// to built-in defaults when neither file exists. Any other error is returned.
func loadConfig() (*config.Config, error) {
	candidates := make([]string, 0, 2)
	if envPath := strings.TrimSpace(os.Getenv(envConfigPath)); envPath != "" {
		candidates = append(candidates, envPath)
	}
	candidates = append(candidates, defaultConfigPath)

	for _, path := range candidates {
		cfg, err := config.Load(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return cfg, nil
	}
	cfg := config.Default()
	return &cfg, nil
}

// resolveOutputMode turns "auto" into a concrete mode.
func resolveOutputMode(mode string, tty bool) string {
	if mode != config.OutputAuto {
		return mode
	}
	if tty {
		return config.OutputTerminal
	}
	return config.OutputHeadless
}

// buildScreens registers the screens in rotation order. Screens whose source
// is disabled are left out.
func buildScreens(cfg *config.Config, text *canvas.Text) (*screen.Registry, error) {
	reg := screen.NewRegistry()
	screens := []screen.Screen{screen.Clock(text)}
	if cfg.Weather.Enabled {
		screens = append(screens, screen.Weather(text, weatherSourceName))
	}
	if cfg.Race.Enabled {
		screens = append(screens, screen.Race(text, raceSourceName))
	}
	for _, s := range screens {
		if err := reg.Register(s); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func buildSources(cfg *config.Config, client *http.Client) []render.SourceSpec {
	interval := cfg.RefreshInterval()
	var specs []render.SourceSpec
	if cfg.Weather.Enabled {
		specs = append(specs, render.SourceSpec{
			Source: source.NewWeather(weatherSourceName, source.WeatherOptions{
				URL:    cfg.Weather.URL,
				APIKey: cfg.Weather.APIKey,
				City:   cfg.Weather.City,
				Units:  cfg.Weather.Units,
				Client: client,
			}),
			Interval: interval,
		})
	}
	if cfg.Race.Enabled {
		specs = append(specs, render.SourceSpec{
			Source:   source.NewRace(raceSourceName, cfg.Race.URL, client),
			Interval: interval,
		})
	}
	return specs
}

// openSink returns the output sink for mode. The terminal is returned
// separately so main can watch it for quit keys.
func openSink(cfg *config.Config, mode string, logger *log.Logger) (sink.Sink, *sink.Terminal, error) {
	switch mode {
	case config.OutputTerminal:
		t, err := sink.NewTerminal()
		if err != nil {
			return nil, nil, err
		}
		return t, t, nil
	case config.OutputMQTT:
		m, err := sink.DialMQTT(sink.MQTTOptions{
			Broker:   cfg.Output.MQTT.Broker,
			Port:     cfg.Output.MQTT.Port,
			ClientID: cfg.Output.MQTT.ClientID,
			Topic:    cfg.Output.MQTT.Topic,
			Timeout:  cfg.RequestTimeout(),
			Logger:   logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return m, nil, nil
	default:
		return sink.NewHeadless(logger), nil, nil
	}
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	fanout, logErr := setupLogging(cfg.Logging, os.Stdout)
	log.SetFlags(0)
	log.SetOutput(fanout)
	if logErr != nil {
		log.Printf("Logging: file output disabled: %v", logErr)
	}
	logger := log.Default()
	cfg.Print(log.Writer())

	rotation, err := schedule.NewRotation(cfg.Rotation.PeriodSeconds, cfg.Rotation.SliceSeconds)
	if err != nil {
		log.Fatalf("Error in rotation config: %v", err)
	}
	text := canvas.NewText()
	registry, err := buildScreens(cfg, text)
	if err != nil {
		log.Fatalf("Error registering screens: %v", err)
	}
	client := &http.Client{Timeout: cfg.RequestTimeout()}

	mode := resolveOutputMode(cfg.Output.Mode, isStdoutTTY())
	if mode == config.OutputTerminal {
		fanout.HoldConsole()
	}
	out, terminal, err := openSink(cfg, mode, logger)
	if err != nil {
		fanout.ReleaseConsole()
		log.Fatalf("Error opening %s output: %v", mode, err)
	}

	loop, err := render.New(render.Options{
		Registry:     registry,
		Sources:      buildSources(cfg, client),
		Sink:         out,
		Text:         text,
		Rotation:     rotation,
		Width:        cfg.Display.Cols,
		Height:       cfg.Display.Rows,
		RenderTick:   cfg.RenderTick(),
		FetchTimeout: cfg.RequestTimeout(),
		Logger:       logger,
	})
	if err != nil {
		_ = out.Clear()
		fanout.ReleaseConsole()
		log.Fatalf("Error starting display: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if terminal != nil {
		go terminal.Watch(stop)
		log.Println("Display running. Press Ctrl+C, Esc or q to stop.")
	} else {
		log.Printf("Display running (%s output). Press Ctrl+C to stop.", mode)
	}

	started := time.Now()
	runErr := loop.Run(ctx)
	fanout.ReleaseConsole()
	if runErr != nil {
		log.Printf("Display stopped: %v", runErr)
		_ = fanout.Close()
		os.Exit(1)
	}
	log.Printf("Display stopped after %s", time.Since(started).Round(time.Second))
	_ = fanout.Close()
}
