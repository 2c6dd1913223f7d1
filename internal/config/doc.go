// Package config loads the contentstream TOML configuration.
//
// # Resolution
//
//  1. An explicit path (the --config flag) wins.
//  2. Otherwise ~/.config/contentstream/config.toml is read.
//  3. A missing file yields Default(); missing or empty keys keep their
//     defaults.
//
// Paths beginning with ~ are expanded against the home directory and made
// absolute. String values are trimmed.
//
// # Keys
//
//	endpoint              widget URL (default http://127.0.0.1:8080/widget)
//	storage               file | sqlite | memory | none (default file)
//	storage_path          session file or database; empty uses the medium default
//	log_file              log destination; "" sends logs to stderr
//	log_level             trace | debug | info | warn | error
//	scroll_debounce_ms    default 333
//	resize_debounce_ms    default 500
//	not_ready_delay_ms    default 50
//	not_ready_retries     default 200; negative retries forever
//	page_limit            size cap for a full listing; 0 lets the backend decide
//	exclusive_properties  properties that hold one tag (default pillars, experts, featuring)
//	theme                 UI theme name; overrides the saved preference
//	prefs_path            UI preferences file (default ~/.config/contentstream/prefs.toml)
//
// Unknown storage kinds and malformed TOML are errors.
package config
