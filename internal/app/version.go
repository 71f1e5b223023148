package app

// Version is the release version of jobsmith.
const Version = "1.0.0"

// VersionTitle is the banner the webhook server answers health probes with.
func VersionTitle() string {
	return "jobsmith " + Version
}
