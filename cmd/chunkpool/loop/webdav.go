package loop

import (
	"fmt"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/studio-b12/gowebdav"
	"path"
)

// webdavWriter uploads every write it receives as its own numbered chunk object under dir. The assembler writes each
// chunk in a single call, so objects line up with pool chunks.
//
type webdavWriter struct {
	client *gowebdav.Client
	dir    string
	seq    int
}

func newWebdavWriter(url, username, password, dir string) (*webdavWriter, error) {
	client := gowebdav.NewClient(url, username, password)
	if err := client.Connect(); err != nil {
		return nil, errors.Wrapf(err, "unable to connect to [%s]", url)
	}
	if err := client.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "unable to create [%s]", dir)
	}
	return &webdavWriter{client: client, dir: dir}, nil
}

func (self *webdavWriter) Write(p []byte) (int, error) {
	name := path.Join(self.dir, fmt.Sprintf("%08d.chunk", self.seq))
	if err := self.client.Write(name, p, 0644); err != nil {
		return 0, errors.Wrapf(err, "unable to upload [%s]", name)
	}
	logrus.Debugf("uploaded [%s] (%d bytes)", name, len(p))
	self.seq++
	return len(p), nil
}
