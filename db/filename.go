package db

import (
	"fmt"
	"strings"

	"ldb"
	"ldb/util"
)

type fileType uint8

const (
	logFile fileType = iota
	tableFile
	descriptorFile
	currentFile
	tempFile
	infoLogFile
)

func (t fileType) String() string {
	switch t {
	case logFile:
		return "log"
	case tableFile:
		return "table"
	case descriptorFile:
		return "descriptor"
	case currentFile:
		return "current"
	case tempFile:
		return "temp"
	case infoLogFile:
		return "info log"
	default:
		return fmt.Sprintf("fileType(%d)", uint8(t))
	}
}

func makeFileName(db string, number uint64, suffix string) string {
	return ldb.Join(db, fmt.Sprintf("%06d.%s", number, suffix))
}

func logFileName(db string, number uint64) string {
	return makeFileName(db, number, "log")
}

func tableFileName(db string, number uint64) string {
	return makeFileName(db, number, "ldb")
}

// sstTableFileName is the table name used by older LevelDB releases.
func sstTableFileName(db string, number uint64) string {
	return makeFileName(db, number, "sst")
}

func descriptorFileName(db string, number uint64) string {
	return ldb.Join(db, fmt.Sprintf("MANIFEST-%06d", number))
}

func currentFileName(db string) string {
	return ldb.Join(db, "CURRENT")
}

func tempFileName(db string, number uint64) string {
	return makeFileName(db, number, "dbtmp")
}

func infoLogFileName(db string) string {
	return ldb.Join(db, "LOG")
}

func oldInfoLogFileName(db string) string {
	return ldb.Join(db, "LOG.old")
}

// parseFileName recognises the base names of files owned by a database:
//
//	dbname/CURRENT
//	dbname/LOG
//	dbname/LOG.old
//	dbname/MANIFEST-[0-9]+
//	dbname/[0-9]+.(log|ldb|sst|dbtmp)
func parseFileName(filename string) (number uint64, ft fileType, ok bool) {
	switch {
	case filename == "CURRENT":
		return 0, currentFile, true
	case filename == "LOG", filename == "LOG.old":
		return 0, infoLogFile, true
	case strings.HasPrefix(filename, "MANIFEST-"):
		rest := filename[len("MANIFEST-"):]
		if !util.ConsumeDecimalNumber(&rest, &number) || len(rest) != 0 {
			return 0, 0, false
		}
		return number, descriptorFile, true
	}
	rest := filename
	if !util.ConsumeDecimalNumber(&rest, &number) {
		return 0, 0, false
	}
	switch rest {
	case ".log":
		ft = logFile
	case ".ldb", ".sst":
		ft = tableFile
	case ".dbtmp":
		ft = tempFile
	default:
		return 0, 0, false
	}
	return number, ft, true
}

// setCurrentFile points CURRENT at the given manifest, replacing it through
// a temporary file.
func setCurrentFile(env *ldb.Env, db string, descriptorNumber uint64) error {
	contents := fmt.Sprintf("MANIFEST-%06d\n", descriptorNumber)
	tmp := tempFileName(db, descriptorNumber)
	err := ldb.WriteStringToFileSync(env, contents, tmp)
	if err == nil {
		err = env.RenameFile(tmp, currentFileName(db))
	}
	if err != nil {
		_ = env.DeleteFile(tmp)
	}
	return err
}
