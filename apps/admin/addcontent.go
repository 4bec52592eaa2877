package main

import (
	"context"
	"fmt"

	"github.com/trezcool/masomo-qa/core"
	"github.com/trezcool/masomo-qa/core/content"
)

// addContent registers a content item questions can then be asked about.
func (cli *commandLine) addContent(typ, title string, courseID int64, link string) error {
	ni := content.NewItem{
		Type:  content.Type(core.CleanString(typ, true /* lower */)),
		Title: title,
		Link:  link,
	}
	if courseID > 0 {
		ni.CourseID = &courseID
	}
	it, err := cli.contentSvc.Create(context.Background(), ni)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "created %s %q with id %d\n", it.Type, it.Title, it.ID)
	return nil
}
