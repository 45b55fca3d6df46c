package ir

// Version is the canon release version.
const Version = "0.1.0"
