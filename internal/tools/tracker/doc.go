// Package tracker provides the Taiga operations the assistant can invoke.
//
// Every project-scoped operation takes an explicit project_id; nothing here
// assumes a default project.
//
// Tools:
//   - list_projects, get_project, create_project, delete_project
//   - list_epics, get_epic, create_epic, update_epic, delete_epic
//   - list_user_stories, get_user_story, create_user_story,
//     update_user_story, delete_user_story, link_user_story_to_epic
//   - breakdown_epic: draft stories for an epic with the model and create them
package tracker
