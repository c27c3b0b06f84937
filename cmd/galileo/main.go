// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// galileo configures a Galileo2 sensor from a board profile and exposes its
// state and controls over HTTP and MQTT.
//
// The profile is reloaded when modified.
package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"os/user"
	"path/filepath"
	"runtime/pprof"

	"github.com/google/uuid"
	"github.com/maruel/go-galileo/galileo"
	"github.com/maruel/go-galileo/galileo/galileotest"
	"github.com/maruel/interrupt"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/host"
)

// open returns the device described by cfg.
func open(cfg *Config, fake bool) (*galileo.Dev, func(), error) {
	if fake {
		s := galileotest.New(galileotest.NVM(30000, [4]uint16{100, 50, 200, 25}))
		d, err := galileo.New(s, nil, cfg.opts())
		return d, func() {}, err
	}
	if _, err := host.Init(); err != nil {
		return nil, nil, err
	}
	b, err := i2creg.Open(cfg.I2C.Bus)
	if err != nil {
		return nil, nil, err
	}
	if cfg.I2C.Hz != 0 {
		if err := b.SetSpeed(physic.Frequency(cfg.I2C.Hz) * physic.Hertz); err != nil {
			b.Close()
			return nil, nil, err
		}
	}
	var power gpio.PinOut
	if cfg.Power != "" {
		if power = gpioreg.ByName(cfg.Power); power == nil {
			b.Close()
			return nil, nil, fmt.Errorf("unknown power pin %q", cfg.Power)
		}
	}
	d, err := galileo.New(b, power, cfg.opts())
	if err != nil {
		b.Close()
		return nil, nil, err
	}
	return d, func() { b.Close() }, nil
}

func mainImpl() error {
	cpuprofile := flag.String("cpuprofile", "", "dump CPU profile in file")
	usr, _ := user.Current()
	configPath := flag.String("config", filepath.Join(usr.HomeDir, ".config", "galileo", "galileo.yaml"), "board profile")
	port := flag.Int("port", 0, "http port to listen on; overrides the profile")
	writeCfg := flag.Bool("write-config", false, "write a default profile and exit")
	fake := flag.Bool("fake", false, "use a fake sensor")
	verbose := flag.Bool("v", false, "verbose mode")
	flag.Parse()
	if !*verbose {
		log.SetOutput(ioutil.Discard)
	}
	log.SetFlags(log.Lmicroseconds)
	if len(flag.Args()) != 0 {
		return fmt.Errorf("unexpected argument: %s", flag.Args())
	}

	if *writeCfg {
		return writeConfig(*configPath, defaultConfig())
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			return err
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	interrupt.HandleCtrlC()

	cfg, err := loadConfig(*configPath)
	if os.IsNotExist(err) {
		cfg, err = defaultConfig(), nil
	}
	if err != nil {
		return err
	}
	if *port != 0 {
		cfg.Port = *port
	}

	d, closer, err := open(cfg, *fake)
	if err != nil {
		return err
	}
	defer closer()
	defer d.Halt()

	cam := newCamera(uuid.NewString(), d)
	if cfg.Port != 0 {
		StartWebServer(cam, cfg.Port)
	}
	if cfg.MQTT.Broker != "" {
		c, err := startMQTT(&cfg.MQTT, cam)
		if err != nil {
			return err
		}
		defer c.Close()
	}
	if err := cam.apply(cfg); err != nil {
		return err
	}

	for !interrupt.IsSet() {
		if err := watchFile(*configPath); err != nil {
			return err
		}
		if interrupt.IsSet() {
			break
		}
		n, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "galileo: %s\n", err)
			continue
		}
		fmt.Printf("Reloaded %s\n", *configPath)
		if err := cam.apply(n); err != nil {
			fmt.Fprintf(os.Stderr, "galileo: %s\n", err)
		}
	}
	fmt.Print("\n")
	return nil
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "\ngalileo: %s.\n", err)
		os.Exit(1)
	}
}
