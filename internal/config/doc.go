// Package config provides configuration parsing for weave projects.
//
// The configuration is stored in weave.json (or weave.yaml) at the project
// root. This package handles loading, saving, and validating configuration.
//
// # Configuration File Structure
//
//	{
//	  "observation": {
//	    "disabled": ["set"]
//	  },
//	  "scheduler": {
//	    "maxIterations": 100,
//	    "debug": false
//	  },
//	  "metrics": {
//	    "enabled": true,
//	    "namespace": "weave",
//	    "tracing": true
//	  },
//	  "devtools": {
//	    "addr": "localhost:7070",
//	    "streamBuffer": 64
//	  },
//	  "store": {
//	    "bucket": "my-bucket",
//	    "prefix": "snapshots/"
//	  }
//	}
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config
