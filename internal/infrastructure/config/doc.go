// Package config provides configuration loading for the SmartTile ops agent.
//
// Configuration is read from a YAML file, merged over hardcoded defaults,
// and finally overridden by SMARTTILE_* environment variables. The loaded
// Config is validated before use; the agent refuses to start on an invalid
// configuration rather than limping along with a broken endpoint.
//
// # Usage
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Channels.BridgeURL)
package config
