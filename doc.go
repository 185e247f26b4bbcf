// Package wschat is a client for the WsChat room protocol: a small
// fixed vocabulary of JSON packets exchanged over one persistent
// websocket connection.
//
// The engine correlates asynchronous replies to the requests that
// caused them, so every operation that expects an answer (auth, join,
// leave, room management) is an ordinary blocking call:
//
//	client := wschat.New("wss://chat.example.com/ws",
//		wschat.WithLogger(logger))
//
//	if err := client.Open(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	if _, err := client.AuthByKey(ctx, key); err != nil {
//		log.Fatal(err)
//	}
//
//	room, err := client.JoinRoom(ctx, "#general", wschat.JoinRoomOpts{})
//	if err != nil {
//		log.Fatal(err)
//	}
//	room.SendMessage("hello")
//
// Server-pushed notifications (messages, presence changes, kicks) are
// delivered through named event subscriptions:
//
//	client.On(wschat.EventMessage, func(ev wschat.Event) {
//		fmt.Println(ev.Message.Text)
//	})
//
// Handlers run synchronously on the dispatch goroutine, one inbound
// frame at a time, in the order the server sent them. A handler must
// not block; issue follow-up requests from another goroutine.
//
// The engine defines no timeout or reconnection policy of its own: a
// correlated call waits until its reply arrives, its context expires,
// or the connection closes, and a closed client can be reopened with
// fresh state.
package wschat
