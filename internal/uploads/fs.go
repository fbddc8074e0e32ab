package uploads

import (
	"errors"
	"io/fs"
	"os"
)

const osCreateExcl = os.O_WRONLY | os.O_CREATE | os.O_EXCL

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
