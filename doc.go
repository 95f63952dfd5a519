/*
flightctl runs a pre-trained quadrotor flight policy on-device.  It feeds
live vehicle state into a fixed-topology feed-forward network executed
synchronously on a bound accelerator runtime, and post-processes the raw
network output into a smoothed 4-channel actuator command stream.

The accelerator sits behind the Executor interface so the same control
loop runs against NPU-backed runtimes or the pure Go reference network
in the mlp subpackage.

See example code and usage in the example subdirectory.
*/
package flightctl
