package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/pflag"

	"github.com/larsks/pductl/internal/config"
	"github.com/larsks/pductl/internal/switchcollection"
	"github.com/larsks/pductl/internal/switchdrivers"
)

// Config holds the configuration for the API server.
type Config struct {
	ListenAddress string         `mapstructure:"listen_address"`
	ListenPort    int            `mapstructure:"listen_port"`
	ConfigFile    string         `mapstructure:"config_file"`
	Driver        string         `mapstructure:"driver"`
	PDU           map[string]any `mapstructure:"pdu"`
	Dummy         map[string]any `mapstructure:"dummy"`
}

// NewConfig creates a new Config instance with default values.
func NewConfig() *Config {
	return &Config{
		ListenAddress: "",
		ListenPort:    8080,
		Driver:        "pdu",
	}
}

// AddFlags adds pflag flags for the configuration.
func (c *Config) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.ConfigFile, "config", c.ConfigFile, "Config file to use")
	fs.StringVar(&c.ListenAddress, "listen-address", c.ListenAddress, "Listen address for http server")
	fs.IntVar(&c.ListenPort, "listen-port", c.ListenPort, "Listen port for http server")
	fs.StringVar(&c.Driver, "driver", c.Driver, "Switch driver to use (pdu or dummy)")
}

// LoadConfigWithFlagSet loads the configuration using the given flag set.
func (c *Config) LoadConfigWithFlagSet(fs *pflag.FlagSet) error {
	loader := config.NewConfigLoader()
	loader.SetConfigFile(c.ConfigFile)
	loader.SetDefaults(map[string]any{
		"listen_address": c.ListenAddress,
		"listen_port":    c.ListenPort,
		"driver":         c.Driver,
	})

	return loader.LoadConfig(c)
}

// driverConfig returns the configuration map for the selected driver.
func (c *Config) driverConfig() map[string]any {
	switch c.Driver {
	case "pdu":
		return c.PDU
	case "dummy":
		return c.Dummy
	default:
		return nil
	}
}

// Server represents the API server.
type Server struct {
	listenAddr string
	switches   switchcollection.SwitchCollection
	mutex      sync.Mutex
	router     *chi.Mux
}

// NewServer creates a new Server instance, initializing the configured
// switch driver.
func NewServer(cfg *Config) (*Server, error) {
	switches, err := switchdrivers.Create(cfg.Driver, cfg.driverConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create %s driver: %w", cfg.Driver, err)
	}

	if err := switches.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize %s driver: %w", cfg.Driver, err)
	}

	return newServerWithCollection(
		fmt.Sprintf("%s:%d", cfg.ListenAddress, cfg.ListenPort),
		switches,
	), nil
}

func newServerWithCollection(listenAddr string, switches switchcollection.SwitchCollection) *Server {
	s := &Server{
		listenAddr: listenAddr,
		switches:   switches,
		router:     chi.NewRouter(),
	}

	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	s.router.Post("/outlet/{id}", s.outletHandler)
	s.router.Get("/outlet/{id}", s.outletStatusHandler)
	s.router.Get("/status", s.statusHandler)

	return s
}

// ServeHTTP dispatches requests to the server's router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start starts the API server and blocks until SIGINT or SIGTERM.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:    s.listenAddr,
		Handler: s.router,
	}

	go func() {
		log.Printf("starting server on %s", s.listenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Println("server gracefully stopped")
	return nil
}

// Close shuts down the switch driver.
func (s *Server) Close() error {
	return s.switches.Close()
}
