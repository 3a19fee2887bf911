package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Error("energydash failed")
		os.Exit(1)
	}
}
