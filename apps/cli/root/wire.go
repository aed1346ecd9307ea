package root

import (
	"github.com/JSisques/saas-boilerplate-sub000/apps/cli/cmd/bootstrap"
	"github.com/JSisques/saas-boilerplate-sub000/apps/cli/cmd/tenantdb"
)

func init() {
	Root().AddCommand(bootstrap.Command())
	Root().AddCommand(tenantdb.Command())
}
