// Package config loads and validates the intfdf configuration.
//
// # Overview
//
// Configuration comes from three layers, later layers winning:
//
//  1. Default(), which reproduces the original workflow's constants
//     (identifier list interface_data_2_df_codes.txt, the
//     pisa_interface_list_to_df.py resource and its GitHub URL, the
//     pdb_<id>_intf_2_df.txt and <id>_PISAinterface_summary_pickled_df.pkl
//     naming conventions).
//  2. A YAML file (intfdf.yaml by default) decoded over the defaults with
//     unknown keys rejected.
//  3. Command-line Overrides.
//
// Validation combines go-playground/validator struct tags with the
// cross-field checks of each section (naming injectivity, publisher
// credentials, telemetry settings).
//
// # Usage Example
//
//	cfg, err := config.Load("intfdf.yaml", true)
//	if err != nil {
//	    return err
//	}
//	if err := overrides.Apply(cfg); err != nil {
//	    return err
//	}
//
// `intfdf init` writes Template(Default()), a commented copy of the defaults.
package config
