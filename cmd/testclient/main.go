// Command testclient exercises the message API with one sample message per
// flow: an event document, a chat report, a help request and an explicit
// dispatch.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

func main() {
	addr := flag.String("addr", "http://localhost:8000", "service base URL")
	flag.Parse()

	now := time.Now().UTC()
	event := map[string]any{
		"start_time":                  0,
		"end_time":                    5,
		"start_utc_time":              now.Add(-5 * time.Second).Format(time.RFC3339),
		"end_utc_time":                now.Format(time.RFC3339),
		"crowd_density":               "severe",
		"crowd_flow":                  "severely_restricted",
		"estimated_count":             500,
		"fire_smoke_detected":         "no",
		"congested_entry_exits":       "yes",
		"safety_level":                "critical",
		"needs_security_intervention": "yes",
		"additional_observations":     "Dense crowd with no visible movement lanes.",
		"location":                    "Platform 3",
	}

	messages := []struct {
		name    string
		payload any
	}{
		{"event", event},
		{"report", map[string]any{
			"action_type": "report",
			"message":     "Smoke visible near the food court",
			"location":    "Food Court",
		}},
		{"help", map[string]any{
			"action_type": "help",
			"message":     "need medical help",
			"location":    "Gate 2",
		}},
		{"dispatch", map[string]any{
			"dispatch_type": "emergency",
			"data": map[string]any{
				"unit_type":     "police",
				"location":      "Platform 3",
				"incident_type": "crowd_control",
			},
			"priority": "high",
		}},
	}

	client := &http.Client{Timeout: 10 * time.Second}
	for _, msg := range messages {
		log.Printf("Sending %s message", msg.name)
		if err := send(client, *addr, msg.payload); err != nil {
			log.Fatalf("%s message failed: %v", msg.name, err)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func send(client *http.Client, addr string, payload any) error {
	body, err := json.Marshal(map[string]any{
		"user_id": "testclient",
		"message": payload,
	})
	if err != nil {
		return err
	}

	resp, err := client.Post(addr+"/v1/analyze", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, out)
	}
	log.Printf("Response: %s", out)
	return nil
}
