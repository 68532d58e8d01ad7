// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package quicgo implements the h3 engine interfaces on top of quic-go.
//
//	ln, err := quicgo.Listen(":8443", tlsConf)
//	if err != nil {
//	    return err
//	}
//	rt := h3.NewRuntime(h3.NewHandshakeAcceptor(ln), svc)
//	return rt.Run(ctx)
package quicgo
