// Package dispatch simulates decentralized delivery dispatching: a
// coordinator actor owns the task pool while autonomous worker actors pull,
// bid on, trade and rescue deliveries, all communicating through message
// envelopes over per-actor queues.
//
// The package is designed to be embedded in host applications. End-users
// typically interact through the high-level Service façade exposed by the
// root package:
//
//	srv := dispatch.New()
//	rt := srv.Runtime()
//	_ = rt.Start(ctx)
//	_ = rt.SubmitTask(ctx, &model.Task{ID: "T1", Duration: 5, Weight: 4})
//	defer rt.Shutdown(ctx)
//
// For more details see the README and individual sub-packages.
package dispatch
