// Package config loads the cvsync configuration.
//
// Configuration is built in layers: built-in defaults, then each JSON file
// added with AddLayer, then CVSYNC_* environment variables. Later layers only
// override the fields they set. Durations are written as strings ("2s",
// "500ms", "7d").
//
// Every file is checked against the embedded schema.json before it is merged.
// Unknown keys are rejected.
//
//	loader := config.NewLoader()
//	loader.AddLayer("configs/base.json")
//	loader.AddLayer("configs/production.json")
//	loader.EnableValidation(true)
//
//	cfg, err := loader.Load()
//	if err != nil {
//	    return err
//	}
//
// A minimal file declares the store and the ontologies:
//
//	{
//	  "store": {"driver": "postgres", "dsn": "host=db user=cv dbname=cv"},
//	  "ontologies": [
//	    {"id": "MI", "database": "psi-mi", "database_ac": "MI:0488",
//	     "snapshot_path": "/data/psi-mi.json"}
//	  ],
//	  "update": {"import_new_terms": true, "ontologies_order": ["MI"]}
//	}
//
// SafeConfig wraps a Config for concurrent readers. Get returns a deep copy
// and Update validates before swapping.
package config
