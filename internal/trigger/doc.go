// Package trigger implements the emergency trigger controller.
//
// Three independent triggers share one alert dispatcher:
//   - PanicTrigger fires after the button has been held for a confirmation delay,
//   - VoiceTrigger fires on the first transcript containing the activation phrase,
//   - DecoyOverlay shows a fake incoming call for a fixed duration and never
//     touches the network.
//
// Each trigger guards its own session with its own mutex, so the panic and
// voice triggers may have alerts in flight at the same time while each one
// stays strictly sequential. Failures are converted to Notices at the trigger
// boundary and never leak into another trigger.
package trigger
