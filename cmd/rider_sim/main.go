package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rider-tracking/internal/domain/geo"
	"rider-tracking/internal/general/contracts"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// metersPerDegree is the length of one degree of latitude on the mean earth sphere.
const metersPerDegree = 111195.0

func main() {
	brokerAddr := flag.String("broker", "tcp://localhost:1883", "MQTT broker address, e.g. tcp://localhost:1883")
	employeeID := flag.String("employee", "E1", "Rider employee id (topic segment)")
	sessionID := flag.String("session", "", "Open session id the fixes belong to")
	startLat := flag.Float64("start-lat", 12.9716, "Latitude of the session start")
	startLon := flag.Float64("start-lon", 77.5946, "Longitude of the session start")
	radius := flag.Float64("loop-radius-m", 400, "Radius of the simulated delivery loop in meters")
	steps := flag.Int("steps", 24, "Fixes per loop; the last one is back at the start")
	interval := flag.Duration("interval", 2*time.Second, "Interval between published fixes")
	jitter := flag.Float64("jitter-m", 5, "Maximum random GPS error in meters")

	flag.Parse()

	if *sessionID == "" || *steps < 2 {
		fmt.Fprintln(os.Stderr, "usage: rider_sim --session=<id> [--employee=E1] [--steps=24] [--broker=tcp://localhost:1883]")
		os.Exit(2)
	}
	start, err := geo.NewPoint(*startLat, *startLon)
	if err != nil {
		log.Fatalf("invalid start position: %v", err)
	}

	clientID := fmt.Sprintf("%s-rider-sim-%d", *employeeID, time.Now().UnixNano())
	opts := mqtt.NewClientOptions().AddBroker(*brokerAddr).SetClientID(clientID)
	opts = opts.SetOrderMatters(false)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalf("failed to connect to broker: %v", token.Error())
	}
	log.Printf("connected to MQTT broker %s as %s", *brokerAddr, clientID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	topic := fmt.Sprintf("riders/%s/location", *employeeID)
	step := 1

	publish := func() {
		p := jittered(loopPoint(start, *radius, step, *steps), *jitter, rng)
		accuracy := *jitter
		now := time.Now().UTC()
		payload := contracts.DeviceFixMessage{
			SessionID: *sessionID,
			Latitude:  &p.Latitude,
			Longitude: &p.Longitude,
			Accuracy:  &accuracy,
			Timestamp: &now,
		}

		data, err := json.Marshal(payload)
		if err != nil {
			log.Printf("failed to encode payload: %v", err)
			return
		}

		token := client.Publish(topic, 1, false, data)
		token.Wait()
		if err := token.Error(); err != nil {
			log.Printf("publish error: %v", err)
			return
		}
		log.Printf("published %s step=%d/%d lat=%.6f lon=%.6f", topic, step, *steps, p.Latitude, p.Longitude)
	}

	publish()

	for {
		select {
		case <-ctx.Done():
			log.Print("received shutdown signal, disconnecting")
			client.Disconnect(250)
			return
		case <-ticker.C:
			if step >= *steps {
				log.Print("loop complete, rider is back at the start")
				client.Disconnect(250)
				return
			}
			step++
			publish()
		}
	}
}

// loopPoint walks a circle of radiusM that passes through start; step == steps is start again.
func loopPoint(start geo.Point, radiusM float64, step, steps int) geo.Point {
	theta := 2 * math.Pi * float64(step) / float64(steps)
	north := radiusM * (1 - math.Cos(theta))
	east := radiusM * math.Sin(theta)
	return offset(start, north, east)
}

func jittered(p geo.Point, maxM float64, rng *rand.Rand) geo.Point {
	if maxM <= 0 {
		return p
	}
	return offset(p, (rng.Float64()*2-1)*maxM, (rng.Float64()*2-1)*maxM)
}

func offset(p geo.Point, northM, eastM float64) geo.Point {
	lat := p.Latitude + northM/metersPerDegree
	lon := p.Longitude + eastM/(metersPerDegree*math.Cos(p.Latitude*math.Pi/180))
	return geo.Point{Latitude: lat, Longitude: lon}
}
