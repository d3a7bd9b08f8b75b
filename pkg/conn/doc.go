// Package conn maintains the server side of the service connection: it
// dials the service, performs the binary handshake, pumps frames through
// read and write loops, resolves acknowledgeable operations, answers the
// ping sub-protocol, and drains gracefully on shutdown.
//
// A Connection is one physical link. A Container owns a fixed set of
// connections to one endpoint, reconnects them with backoff, spreads
// writes across the healthy ones, and opens on-demand connections when
// the service asks for them through rebalance pings.
//
// Typical use:
//
//	cfg := conn.DefaultConfig()
//	cfg.URL = "wss://contoso.service.signalr.net/server/"
//	cfg.ServerID = "server-1"
//
//	c := conn.NewContainer(cfg, &conn.WebSocketDialer{}, handler)
//	if err := c.Start(ctx); err != nil {
//		return err
//	}
//	defer c.Stop()
//
//	c.Write(&protocol.BroadcastData{Payloads: payloads})
//
// Handlers receive the data-plane messages (open, close, data, client
// invocations) on the read loop; acks and pings never reach them.
package conn
