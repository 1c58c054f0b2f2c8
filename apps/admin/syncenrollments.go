package main

import "context"

func (cli *commandLine) syncEnrollments(subjectID, studentID string) error {
	ctx := context.Background()
	if subjectID != "" {
		if err := cli.schSvc.ResyncSubjectEnrollments(ctx, subjectID); err != nil {
			return err
		}
	}
	if studentID != "" {
		if err := cli.schSvc.ResyncStudentEnrollments(ctx, studentID); err != nil {
			return err
		}
	}
	return nil
}
