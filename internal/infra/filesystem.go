package infra

import (
	"os"

	"github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
)

// GetWorkDir expands the configured dot path ("~" included) and makes sure
// the directory exists.
func GetWorkDir(path string) string {
	workDir, err := homedir.Expand(path)
	if err != nil {
		log.Fatalln(err)
	}
	if err = os.MkdirAll(workDir, os.ModePerm); err != nil {
		log.Fatalln(err)
	}
	return workDir
}
