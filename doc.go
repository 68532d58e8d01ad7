// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package h3bridge provides the entry point for applications serving
// HTTP/3 over QUIC.
//
// An application is described by an [AppBuilder], which turns a config
// value into an [App]. [Run] reads the config sources, decodes them into
// the builder's config type, builds the [App] and runs it.
//
//	err := h3bridge.Run(
//	    ctx,
//	    h3bridge.AppBuilderFunc[Config](build),
//	    config.FromYaml(f),
//	    config.FromEnv("H3BRIDGE"),
//	)
//
// The transport itself lives in the h3 package, the frame oriented body
// abstraction in the body package and the quic-go backed engine in h3/quicgo.
package h3bridge
