/*Package dronecore is a host-side client library for a consumer
quadrotor's proprietary UDP control protocol.

Disclaimer

This package is an independent implementation built from analysis of the
drone's wire traffic. Use it at your own risk; the author(s) are in no
way responsible for any damage caused either to or by the drone when
using this software.

Concepts

Transport and handshake

Connect dials the drone's UDP control port, exchanges the connection
handshake, and starts a watchdog that reconnects automatically if no
traffic arrives within the configured timeout. A single dispatcher
goroutine drains inbound datagrams from a queue fed by the receive loop
and invokes the registered handler for each recognized message id.

Telemetry

Flight-status packets and flight-log records are decoded and published
onto per-topic Channels (MvoCh, ImuCh, VoCh, ProximityCh, FlightDataCh,
FlightStateCh, WifiCh, LightCh). A Channel keeps the last published value
and fans out every write to its subscribers; dedup channels additionally
suppress consecutive equal values. Flight-log vectors, covariances, and
the IMU orientation are rotated out of the drone's native Z-down frame
into the library's X-forward/Y-left/Z-up frame before publication.

Position control

Controller runs four independent PID loops (x, y, z, yaw) against
whichever position/orientation channels are wired in with
SetControllerSource, and publishes its Controls on its OutputChannel.
The heartbeat does not read that channel: it sends only the controls
last set by ManualSticks or Hover (all zero until then). A
sustained run of invalid position samples resets the controller rather
than let it integrate against stale input.

Funcs vs. Channels

Single-shot accessors like FlightState() read the latest derived value;
the channel-based Subscribe form should be preferred for anything that
needs every update, not just the most recent one.
*/
package dronecore
