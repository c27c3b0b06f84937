// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/maruel/interrupt"
	"github.com/maruel/serve-dir/loghttp"
	"golang.org/x/net/websocket"
)

// WebServer exposes the device state over HTTP.
type WebServer struct {
	cam *camera

	cond   sync.Cond
	last   []byte // JSON encoded Status.
	serial int    // Incremented on each update.
}

// StartWebServer serves / and /stream on port.
func StartWebServer(cam *camera, port int) *WebServer {
	w := &WebServer{
		cam:  cam,
		cond: *sync.NewCond(&sync.Mutex{}),
	}
	cam.listen(w.update)
	mux := http.NewServeMux()
	mux.HandleFunc("/", w.root)
	// The websocket needs the raw connection so it bypasses the logger.
	top := http.NewServeMux()
	top.Handle("/", &loghttp.Handler{Handler: mux})
	top.Handle("/stream", websocket.Handler(w.stream))
	fmt.Printf("Listening on %d\n", port)
	go http.ListenAndServe(fmt.Sprintf(":%d", port), top)
	go func() {
		<-interrupt.Channel
		w.cond.Broadcast()
	}()
	return w
}

func (s *WebServer) update(st *Status) {
	b, err := json.Marshal(st)
	if err != nil {
		log.Printf("status: %v", err)
		return
	}
	s.cond.L.Lock()
	defer s.cond.L.Unlock()
	s.last = b
	s.serial++
	s.cond.Broadcast()
}

func (s *WebServer) root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	if err := json.NewEncoder(w).Encode(s.cam.status()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// stream sends every status update as a JSON text frame.
func (s *WebServer) stream(w *websocket.Conn) {
	log.Printf("websocket from %s", w.Request().RemoteAddr)
	defer w.Close()
	s.cond.L.Lock()
	defer s.cond.L.Unlock()
	serial := -1
	for !interrupt.IsSet() {
		if serial == s.serial {
			s.cond.Wait()
			continue
		}
		serial = s.serial
		b := s.last
		if b == nil {
			continue
		}
		s.cond.L.Unlock()
		// Do the actual I/O without the lock.
		_, err := w.Write(b)
		s.cond.L.Lock()
		// To break out of the loop, the lock must be held.
		if err != nil {
			log.Printf("websocket err: %s", err)
			break
		}
	}
}
