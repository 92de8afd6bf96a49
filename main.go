package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"arc/access"
	"arc/config"
	"arc/engine"
	"arc/gateway"
	"arc/geo"
	"arc/identity"
	"arc/storage"
	"arc/transport"
)

func main() {
	if err := godotenv.Load(); err == nil {
		log.Println("loaded environment overrides from .env")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, cfgPath, err := config.LoadOrCreate(ctx)
	if err != nil {
		log.Fatalf("startup failed while loading config: %v", err)
	}

	account, err := identity.Ensure(cfg.PrivateKeyPath, cfg.PublicKeyPath)
	if err != nil {
		log.Fatalf("startup failed while preparing account keypair: %v", err)
	}

	fmt.Printf("Device ID:       %s\n", cfg.DeviceID)
	fmt.Printf("Nickname:        %s\n", cfg.Nickname)
	fmt.Printf("Address:         %s\n", identity.ShortAddress(account.Address))
	fmt.Printf("Channel:         %s\n", cfg.ChannelDomain)
	fmt.Printf("Config File:     %s\n", cfgPath)
	dataDir := filepath.Dir(cfgPath)
	fmt.Printf("Data Directory:  %s\n", dataDir)

	store, dbPath, err := storage.Open(dataDir)
	if err != nil {
		log.Fatalf("startup failed while opening database: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("database close error: %v", err)
		}
	}()
	fmt.Printf("Database File:   %s\n", dbPath)

	if err := store.SetProfileValue(storage.ProfileKeyAddress, account.Address); err != nil {
		log.Printf("profile write failed: %v", err)
	}
	if nickname, err := store.GetProfileValue(storage.ProfileKeyNickname); err == nil && nickname != "" {
		cfg.Nickname = nickname
	}
	if err := store.SaveChannel(cfg.ChannelDomain, "default"); err != nil {
		log.Printf("channel book write failed: %v", err)
	}

	listenAddress := ":0"
	if cfg.PortMode == config.PortModeFixed {
		listenAddress = fmt.Sprintf(":%d", cfg.ListeningPort)
	}
	mesh, err := transport.StartLAN(transport.LANConfig{
		PeerID:        cfg.DeviceID,
		DisplayName:   cfg.Nickname,
		ListenAddress: listenAddress,
	})
	if err != nil {
		log.Fatalf("startup failed while starting transport: %v", err)
	}
	defer func() {
		if err := mesh.Close(); err != nil {
			log.Printf("transport close error: %v", err)
		}
	}()
	fmt.Printf("Mesh Address:    %s\n", mesh.Addr())

	codec, err := access.NewRitualCodec(cfg.AccessDomain, cfg.RitualID)
	if err != nil {
		log.Fatalf("startup failed while building access codec: %v", err)
	}

	eng, err := engine.New(engine.Config{
		Transport: mesh,
		Codec:     codec,
		Identity: access.IdentityContext{
			Address: account.Address,
			Chain:   access.NewStaticChainReader(),
		},
		Nickname:      cfg.Nickname,
		ChannelDomain: cfg.ChannelDomain,
		Sampler: geo.NewFixedSampler(geo.Sample{
			Latitude:  cfg.FixedLatitude,
			Longitude: cfg.FixedLongitude,
		}),
		Events: store,
	})
	if err != nil {
		log.Fatalf("startup failed while building engine: %v", err)
	}
	if err := eng.Start(); err != nil {
		log.Fatalf("startup failed while starting engine: %v", err)
	}
	defer func() {
		if err := eng.Close(); err != nil {
			log.Printf("engine close error: %v", err)
		}
	}()

	server := gateway.NewServer(cfg.GatewayAddress, eng, store)
	go func() {
		if err := server.Start(); err != nil {
			log.Printf("gateway stopped: %v", err)
			stop()
		}
	}()
	fmt.Printf("Gateway:         http://%s\n", cfg.GatewayAddress)

	fmt.Println("Status:          running (press Ctrl+C to stop)")
	<-ctx.Done()
	fmt.Println("Status:          shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("gateway shutdown error: %v", err)
	}
}
