package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/soypat/mcp2517fd"
	"github.com/soypat/mcp2517fd/sfr"
	mqtt "github.com/soypat/natiu-mqtt"
	"github.com/spf13/cobra"
)

var (
	mqttBroker   string
	mqttTopic    string
	mqttClientID string
	monitorEvery time.Duration
)

// sample is the JSON document published for every observation.
type sample struct {
	Time    time.Time `json:"time"`
	Kind    string    `json:"kind"`
	Mode    string    `json:"mode,omitempty"`
	Attempt int       `json:"attempt,omitempty"`
	TEC     uint8     `json:"tec"`
	REC     uint8     `json:"rec"`
	BusOff  bool      `json:"busoff,omitempty"`
	BDIAG0  uint32    `json:"bdiag0"`
	BDIAG1  uint32    `json:"bdiag1"`
	Err     string    `json:"err,omitempty"`
}

func modePollSample(ev mcp2517fd.ModePollEvent) sample {
	return sample{
		Time:    time.Now(),
		Kind:    "mode-poll",
		Mode:    ev.Current.String(),
		Attempt: ev.Attempt,
		TEC:     ev.TREC.TEC(),
		REC:     ev.TREC.REC(),
		BusOff:  ev.TREC.BusOff(),
		BDIAG0:  uint32(ev.BDIAG0),
		BDIAG1:  uint32(ev.BDIAG1),
	}
}

// statusSample reads the mode and error counters. A bus failure is
// reported in the sample itself as a link-down observation.
func statusSample(c *mcp2517fd.Controller) sample {
	smp := sample{Time: time.Now(), Kind: "status"}
	fail := func(err error) sample {
		smp.Kind = "link-down"
		smp.Err = err.Error()
		return smp
	}
	mode, err := c.Mode()
	if err != nil {
		return fail(err)
	}
	smp.Mode = mode.String()
	trec, err := c.ReadSFR(sfr.C1TREC)
	if err != nil {
		return fail(err)
	}
	smp.TEC = sfr.TRECBits(trec).TEC()
	smp.REC = sfr.TRECBits(trec).REC()
	smp.BusOff = sfr.TRECBits(trec).BusOff()
	if smp.BDIAG0, err = c.ReadSFR(sfr.C1BDIAG0); err != nil {
		return fail(err)
	}
	if smp.BDIAG1, err = c.ReadSFR(sfr.C1BDIAG1); err != nil {
		return fail(err)
	}
	return smp
}

type publisher struct {
	client *mqtt.Client
	flags  mqtt.PacketFlags
	vp     mqtt.VariablesPublish
	logger *slog.Logger
}

func (p *publisher) publish(smp sample) {
	payload, err := json.Marshal(smp)
	if err != nil {
		p.logger.Error("monitor:marshal", slog.String("err", err.Error()))
		return
	}
	p.vp.PacketIdentifier++
	err = p.client.PublishPayload(p.flags, p.vp, payload)
	if err != nil {
		p.logger.Error("mqtt:publish-failed", slog.String("err", err.Error()))
		return
	}
	p.logger.Debug("mqtt:published", slog.String("kind", smp.Kind), slog.Uint64("packetID", uint64(p.vp.PacketIdentifier)))
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "bring up the controller and publish its status over MQTT",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settingsFromFlags()
		if err != nil {
			return err
		}
		logger := newLogger()
		c, closer, err := newController(logger)
		if err != nil {
			return err
		}
		defer closer()

		pub, err := dialMQTT(cmd.Context(), logger)
		if err != nil {
			return err
		}
		defer pub.client.Disconnect(errors.New("monitor exiting"))

		s.OnModePoll = func(ev mcp2517fd.ModePollEvent) { pub.publish(modePollSample(ev)) }
		err = bringup(cmd, c, s, logger)
		if err != nil {
			pub.publish(sample{Time: time.Now(), Kind: "bringup-failed", Err: err.Error()})
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), green("controller up, publishing to %s on %s", mqttTopic, mqttBroker))
		ticker := time.NewTicker(monitorEvery)
		defer ticker.Stop()
		for {
			smp := statusSample(c)
			if smp.Kind == "link-down" {
				fmt.Fprintln(cmd.ErrOrStderr(), red("link down:"), smp.Err)
			}
			pub.publish(smp)
			if !pub.client.IsConnected() {
				return fmt.Errorf("mqtt disconnected: %w", pub.client.Err())
			}
			select {
			case <-cmd.Context().Done():
				return nil
			case <-ticker.C:
			}
		}
	},
}

func dialMQTT(ctx context.Context, logger *slog.Logger) (*publisher, error) {
	conn, err := net.DialTimeout("tcp", mqttBroker, 5*time.Second)
	if err != nil {
		return nil, err
	}
	client := mqtt.NewClient(mqtt.ClientConfig{
		Decoder: mqtt.DecoderNoAlloc{UserBuffer: make([]byte, 4096)},
		OnPub: func(pubHead mqtt.Header, varPub mqtt.VariablesPublish, r io.Reader) error {
			logger.Debug("mqtt:received", slog.String("topic", string(varPub.TopicName)))
			return nil
		},
	})
	var varconn mqtt.VariablesConnect
	varconn.SetDefaultMQTT([]byte(mqttClientID))
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	logger.Info("mqtt:connecting", slog.String("broker", mqttBroker))
	if err := client.Connect(ctx, conn, &varconn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	flags, err := mqtt.NewPublishFlags(mqtt.QoS0, false, false)
	if err != nil {
		return nil, err
	}
	return &publisher{
		client: client,
		flags:  flags,
		vp:     mqtt.VariablesPublish{TopicName: []byte(mqttTopic)},
		logger: logger,
	}, nil
}

func init() {
	addSettingsFlags(monitorCmd)
	f := monitorCmd.Flags()
	f.StringVar(&mqttBroker, "mqtt-broker", "localhost:1883", "MQTT broker address")
	f.StringVar(&mqttTopic, "mqtt-topic", "mcp2517fd/status", "topic samples are published to")
	f.StringVar(&mqttClientID, "mqtt-client", "mcpctl", "MQTT client identifier")
	f.DurationVar(&monitorEvery, "every", time.Second, "status sampling period")
	rootCmd.AddCommand(monitorCmd)
}
