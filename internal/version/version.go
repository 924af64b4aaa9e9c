package version

// Version of the functions runtime, reported by the version command and sent to the
// org with every Data API call.
const Version = "0.1.0"

const ClientName = "sf-functions-go"
