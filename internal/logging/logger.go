package logging

import (
	"log"
	"os"
)

var (
	Bucket   = log.New(os.Stdout, "[bucket] ", log.LstdFlags)
	Payments = log.New(os.Stdout, "[payments] ", log.LstdFlags)
	Wallet   = log.New(os.Stdout, "[wallet] ", log.LstdFlags)
	Internal = log.New(os.Stdout, "[internal] ", log.LstdFlags)
	HTTP     = log.New(os.Stdout, "[http] ", log.LstdFlags)
)
