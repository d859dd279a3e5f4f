// Package telemetry publishes command results to an MQTT broker.
//
// A Publisher implements command.Reporter, so it can be handed to the
// dispatcher directly:
//
//	pub, err := telemetry.Connect(telemetry.Options{
//	    Broker: "tcp://localhost:1883",
//	    Device: "myi2cdev",
//	})
//	if err != nil {
//	    return err
//	}
//	defer pub.Close()
//
//	d := command.New(mgr.Engine(), command.Options{Reporter: pub})
//
// Each result is published as JSON on <prefix>/<device>/result/<kind>. A
// retained status message ("online" or "offline") is kept on
// <prefix>/<device>/status; the broker publishes "offline" through the
// last-will message if the daemon disappears.
package telemetry
