package global

import (
	"github.com/chunkvault/chunk-upload-service/pkg/fileurl"
)

var (
	// 程序执行目录
	ROOT string
	Name string = "Chunk Upload Service"
)

func init() {

	filename := fileurl.GetExePath()
	ROOT = filename + "/"

}
