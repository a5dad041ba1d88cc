// Package service ties the feeder components into a running device.
//
// # DeviceService
//
// DeviceService owns one feeder. It handles:
//   - starting a halted RTC and checking the schedule storage at boot
//   - the servo actuator loop (run timing and the button)
//   - the TCP control server
//   - presence announcements (UDP beacon and mDNS)
//   - the clock loop: scheduled feedings and hourly time sync
//   - feeding notifications, metrics and persisted counters
//
// Example usage:
//
//	svc, err := service.NewDeviceService(service.Hardware{
//		RTC:    clock,
//		Servo:  pwm,
//		Button: button,
//	}, service.DefaultDeviceConfig())
//	svc.SetAnnouncer(discovery.NewBeacon(discovery.BeaconConfig{}))
//	svc.Start(ctx)
//	defer svc.Stop()
package service
