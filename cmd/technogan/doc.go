// Command technogan trains DCGAN on spectrograms of techno tracks and synthesizes new audio.
//
// Usage:
//
//	technogan build-cache --input ./tracks --output ./data/techno.f16
//	technogan stats --cache ./data/techno.f16
//	technogan train --config ./config.yaml
//	technogan synth --weights ./output/weights.gob --count 4 --output ./generated
//
// Every command reads optional YAML configuration (--config). Absent fields keep default values.
//
// Supported audio formats: .wav, .flac
// Supported tensor caches: .f16 (written by build-cache), .pt/.pth (PyTorch), .pkl/.pickle
package main
