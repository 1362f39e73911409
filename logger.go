package orbitalvk

import (
	"io"
	"log"
	"os"
)

//Package level loggers shared by all driver components. Default output is
//stderr so the embedding emulator owns log routing.
var (
	info_log  = log.New(os.Stderr, "INFO: ", log.Ldate|log.Ltime|log.Lshortfile)
	warn_log  = log.New(os.Stderr, "WARNING: ", log.Ldate|log.Ltime|log.Lshortfile)
	error_log = log.New(os.Stderr, "ERROR: ", log.Ldate|log.Ltime|log.Lshortfile)
)

//Redirects all driver logging to the given writer
func SetLogOutput(w io.Writer) {
	info_log.SetOutput(w)
	warn_log.SetOutput(w)
	error_log.SetOutput(w)
}
