// Package config loads the myi2cd daemon configuration.
//
// Configuration is read from YAML over built-in defaults, then overridden
// by environment variables named SOFTI2C_<SECTION>_<KEY> (for example
// SOFTI2C_BUS_KIND or SOFTI2C_MQTT_PASSWORD). Credentials belong in the
// environment rather than the file.
//
//	device:
//	  name: myi2cdev
//	  compatible: myi2c
//	bus:
//	  kind: linux
//	  number: 1
//	board:
//	  path: /etc/softi2c/board.yaml
//	  hotplug: true
//	miscdev:
//	  dir: /run/softi2c
//	mqtt:
//	  enabled: true
//	  broker: tcp://localhost:1883
//	  qos: 1
//	logging:
//	  level: info
//	  format: json
//	dispatcher:
//	  write_back: false
//
// Usage:
//
//	cfg, err := config.Load("/etc/softi2c/myi2cd.yaml")
//	if err != nil {
//	    return err
//	}
package config
