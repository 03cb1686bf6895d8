// Package prayer holds the domain model shared by the time sources, the
// schedule coordinator and the notification dispatcher: the fixed set of daily
// prayers, a day's timings, and the typed errors a time source can fail with.
package prayer
