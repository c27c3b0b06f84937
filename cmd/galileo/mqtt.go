// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// Response is published on the status topic after each command.
type Response struct {
	ID         string  `json:"id"`
	CommandAck string  `json:"command_ack"`
	Status     string  `json:"status"` // "ok" or "error"
	Error      string  `json:"error,omitempty"`
	State      *Status `json:"state,omitempty"`
}

// controller is the MQTT control plane.
type controller struct {
	cfg    *MQTTConfig
	cam    *camera
	client mqtt.Client
}

// startMQTT connects to the broker, subscribes to the command topic and
// publishes every state change on the status topic.
func startMQTT(cfg *MQTTConfig, cam *camera) (*controller, error) {
	c := &controller{cfg: cfg, cam: cam}
	id := cfg.ClientID
	if id == "" {
		id = "galileo-" + uuid.NewString()
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(id)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	// Handlers publish and wait for the acknowledgement.
	opts.SetOrderMatters(false)
	opts.OnConnect = func(client mqtt.Client) {
		// Subscriptions are lost on reconnection.
		log.Printf("mqtt: connected to %s as %s", cfg.Broker, id)
		if t := client.Subscribe(cfg.Topics.Command, cfg.QoS, c.onMessage); t.WaitTimeout(5*time.Second) && t.Error() != nil {
			log.Printf("mqtt: subscribe %s: %v", cfg.Topics.Command, t.Error())
		}
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		log.Printf("mqtt: connection lost: %v", err)
	}
	c.client = mqtt.NewClient(opts)
	t := c.client.Connect()
	if !t.WaitTimeout(5 * time.Second) {
		return nil, fmt.Errorf("mqtt: connection to %s timed out", cfg.Broker)
	}
	if err := t.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: %w", err)
	}
	cam.listen(c.publishStatus)
	return c, nil
}

// Close disconnects from the broker.
func (c *controller) Close() {
	if c.client.IsConnected() {
		c.client.Unsubscribe(c.cfg.Topics.Command).WaitTimeout(time.Second)
	}
	c.client.Disconnect(250)
}

func (c *controller) onMessage(client mqtt.Client, msg mqtt.Message) {
	c.publish(c.process(msg.Payload()))
}

// process runs the JSON encoded command in payload.
func (c *controller) process(payload []byte) *Response {
	cmd := &Command{}
	if err := json.Unmarshal(payload, cmd); err != nil {
		return &Response{ID: uuid.NewString(), Status: "error", Error: err.Error()}
	}
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	r := &Response{ID: cmd.ID, CommandAck: cmd.Command, Status: "ok"}
	s, err := c.cam.handle(cmd)
	r.State = s
	if err != nil {
		log.Printf("mqtt: %s: %v", cmd.Command, err)
		r.Status = "error"
		r.Error = err.Error()
	}
	return r
}

func (c *controller) publishStatus(s *Status) {
	c.publish(&Response{ID: uuid.NewString(), CommandAck: "status", Status: "ok", State: s})
}

func (c *controller) publish(r *Response) {
	b, err := json.Marshal(r)
	if err == nil {
		t := c.client.Publish(c.cfg.Topics.Status, c.cfg.QoS, false, b)
		if !t.WaitTimeout(2 * time.Second) {
			err = errors.New("timed out")
		} else {
			err = t.Error()
		}
	}
	if err != nil {
		log.Printf("mqtt: publish %s: %v", c.cfg.Topics.Status, err)
	}
}
